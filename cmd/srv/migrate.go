package main

import (
	"github.com/questx-lab/badgehub/pkg/xcontext"
	"github.com/urfave/cli/v2"
)

func (s *srv) startMigrate(*cli.Context) error {
	if err := s.loadDatabase(); err != nil {
		return err
	}

	if err := s.migrateDB(); err != nil {
		return err
	}

	xcontext.Logger(s.ctx).Infof("Migrated database %s", xcontext.Configs(s.ctx).Database.Database)
	return nil
}
