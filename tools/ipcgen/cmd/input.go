// Copyright 2026 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"github.com/google/subcommands"

	"go.fuchsia.dev/ipcgen/tools/ipcgen/lib/compiler"
	"go.fuchsia.dev/ipcgen/tools/ipcgen/lib/config"
	"go.fuchsia.dev/ipcgen/tools/ipcgen/lib/diag"
	"go.fuchsia.dev/ipcgen/tools/ipcgen/lib/ir"
	"go.fuchsia.dev/ipcgen/tools/lib/logger"
)

// inputFlags are the flags shared by every command that compiles a library.
type inputFlags struct {
	irFile     string
	configFile string
	platform   string
}

func (i *inputFlags) register(f *flag.FlagSet) {
	f.StringVar(&i.irFile, "ir", "", "path to the JSON IR of the library")
	f.StringVar(&i.configFile, "config", "", "path to a YAML configuration; the lp64 defaults are used when empty")
	f.StringVar(&i.platform, "platform", "", "platform preset overriding the configuration, one of lp64 or ilp32")
}

func (i *inputFlags) loadConfig() (config.Config, error) {
	cfg := config.Default()
	if i.configFile != "" {
		var err error
		if cfg, err = config.Read(i.configFile); err != nil {
			return config.Config{}, err
		}
	}
	if i.platform != "" {
		p, ok := config.Preset(i.platform)
		if !ok {
			return config.Config{}, fmt.Errorf("unknown platform preset %q", i.platform)
		}
		cfg.Platform = p
	}
	return cfg, cfg.Validate()
}

// compile reads and compiles the library named by the flags. A partial
// result is returned alongside the error when the policy lets compilation
// continue past a failing interface.
func (i *inputFlags) compile(ctx context.Context) (*compiler.Root, *diag.Reporter, error) {
	if i.irFile == "" {
		return nil, nil, errors.New("-ir is required")
	}
	cfg, err := i.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	lib, err := ir.ReadJSONIr(i.irFile)
	if err != nil {
		return nil, nil, err
	}
	r := diag.NewReporter(ctx, cfg.Policy)
	root, err := compiler.New(cfg, r).Compile(ctx, &lib)
	if r.Warnings() > 0 {
		logger.Infof(ctx, "%d warnings", r.Warnings())
	}
	return root, r, err
}

// exitStatus logs err and maps it to an exit status.
func exitStatus(ctx context.Context, err error) subcommands.ExitStatus {
	if err != nil {
		logger.Errorf(ctx, "%s", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
