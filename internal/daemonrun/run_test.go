package daemonrun

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"reelcast/internal/logging"
	"reelcast/internal/testsupport"
)

func TestBuildWiresPipeline(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.LLM.Enabled = true
	cfg.LLM.APIKey = "test-key"
	st := testsupport.MustOpenStore(t, cfg)

	ctl, closers, err := Build(cfg, st, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if ctl == nil {
		t.Fatal("expected controller")
	}
	if len(closers) != 0 {
		t.Fatalf("expected no closers without redis, got %d", len(closers))
	}
	if err := ctl.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func TestBuildWithRedisMirror(t *testing.T) {
	srv := miniredis.RunT(t)
	cfg := testsupport.NewConfig(t)
	cfg.Redis.Enabled = true
	cfg.Redis.Addr = srv.Addr()
	st := testsupport.MustOpenStore(t, cfg)

	ctl, closers, err := Build(cfg, st, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(closers) != 1 {
		t.Fatalf("expected redis closer, got %d", len(closers))
	}
	closeAll(logging.NewNop(), closers)
	_ = ctl.Shutdown(context.Background())
}

func TestBuildToleratesUnreachableRedis(t *testing.T) {
	srv := miniredis.RunT(t)
	addr := srv.Addr()
	srv.Close()

	cfg := testsupport.NewConfig(t)
	cfg.Redis.Enabled = true
	cfg.Redis.Addr = addr
	st := testsupport.MustOpenStore(t, cfg)

	ctl, closers, err := Build(cfg, st, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(closers) != 0 {
		t.Fatalf("expected mirror to be skipped, got %d closers", len(closers))
	}
	_ = ctl.Shutdown(context.Background())
}
