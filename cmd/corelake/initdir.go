package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/openobserve/corelake/internal/catalog"
)

// initDirCommand implements `init-dir -p <path>`: creates the on-disk
// skeleton (wal/, catalog/, cache/, quarantine/, objects/) plus a migrated-but-empty
// catalog, per spec.md §6's exit-code contract (0 success, 1 I/O error, 2
// existing non-empty path without --force).
var initDirCommand = &cli.Command{
	Name:  "init-dir",
	Usage: "create the on-disk skeleton a fresh data directory needs",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "path",
			Aliases:  []string{"p"},
			Required: true,
			Usage:    "root data directory to initialize",
		},
		&cli.BoolFlag{
			Name:  "force",
			Usage: "initialize even if path already exists and is non-empty",
		},
	},
	Action: func(c *cli.Context) error {
		path := c.String("path")
		force := c.Bool("force")

		empty, err := dirEmptyOrMissing(path)
		if err != nil {
			return cli.Exit(fmt.Sprintf("init-dir: %s", err), 1)
		}
		if !empty && !force {
			return cli.Exit(fmt.Sprintf("init-dir: %s already exists and is non-empty, pass --force to reinitialize", path), 2)
		}

		for _, sub := range []string{"wal", "catalog", "cache", "quarantine", "objects"} {
			if err := os.MkdirAll(filepath.Join(path, sub), 0o777); err != nil {
				return cli.Exit(fmt.Sprintf("init-dir: create %s: %s", sub, err), 1)
			}
		}

		store, err := catalog.Open(filepath.Join(path, "catalog", "catalog.db"))
		if err != nil {
			return cli.Exit(fmt.Sprintf("init-dir: migrate catalog: %s", err), 1)
		}
		if err := store.Close(); err != nil {
			return cli.Exit(fmt.Sprintf("init-dir: close catalog: %s", err), 1)
		}

		fmt.Printf("initialized data directory at %s\n", path)
		return nil
	},
}

func dirEmptyOrMissing(path string) (bool, error) {
	entries, err := os.ReadDir(path)
	if os.IsNotExist(err) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return len(entries) == 0, nil
}
