package config

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestWatcherReload(t *testing.T) {
	path := writeTempConfig(t, validYAML)

	updates := make(chan AppConfig, 1)
	w, err := NewWatcher(path, WatchConfig{Enabled: true, CooldownTime: time.Millisecond},
		func(cfg AppConfig) {
			select {
			case updates <- cfg:
			default:
			}
		}, nil)
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	if err := os.WriteFile(path, []byte(validYAML), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	select {
	case cfg := <-updates:
		if cfg.Env != "dev" {
			t.Fatalf("unexpected reloaded config: %+v", cfg)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("no reload observed")
	}
	if w.LastReloadTime().IsZero() {
		t.Fatalf("last reload time not recorded")
	}
}

// 改坏的配置被丢弃，onUpdate 不触发，onError 触发。
func TestWatcherRejectsInvalid(t *testing.T) {
	path := writeTempConfig(t, validYAML)

	errs := make(chan error, 1)
	w, err := NewWatcher(path, WatchConfig{Enabled: true, CooldownTime: time.Millisecond},
		func(AppConfig) {
			t.Errorf("invalid config must not reach onUpdate")
		},
		func(e error) {
			select {
			case errs <- e:
			default:
			}
		})
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	if err := os.WriteFile(path, []byte("env: ''\n"), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	select {
	case <-errs:
	case <-time.After(3 * time.Second):
		t.Fatalf("no reload error observed")
	}
}

func TestWatcherDisabled(t *testing.T) {
	path := writeTempConfig(t, validYAML)
	w, err := NewWatcher(path, WatchConfig{Enabled: false}, nil, nil)
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("disabled start: %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
}
