package main

import (
	"github.com/questx-lab/badgehub/pkg/xcontext"
	"github.com/urfave/cli/v2"
)

func (s *srv) startReconcile(cctx *cli.Context) error {
	if err := s.loadService(); err != nil {
		return err
	}

	n, err := s.awardDomain.ReconcilePending(s.ctx, cctx.Int("limit"))
	if err != nil {
		return err
	}

	xcontext.Logger(s.ctx).Infof("Replayed %d journaled award transfers", n)
	return nil
}
