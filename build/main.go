// Copyright (c) CurioSwitch (choko@curioswitch.org)
// SPDX-License-Identifier: BUSL-1.1

package main

import (
	"os"
	"os/exec"

	"github.com/curioswitch/go-build"
	"github.com/goyek/goyek/v2"
	"github.com/goyek/x/boot"
)

func main() {
	goyek.Define(goyek.Task{
		Name:  "test-emulator",
		Usage: "Runs the Firestore adapter tests against a running Firestore emulator.",
		Action: func(a *goyek.A) {
			host := os.Getenv("FIRESTORE_EMULATOR_HOST")
			if host == "" {
				host = "127.0.0.1:8080"
			}
			cmd := exec.CommandContext(a.Context(), "go", "test", "-count=1", "./internal/docstore/firestoredb/...")
			cmd.Env = append(os.Environ(), "FIRESTORE_EMULATOR_HOST="+host)
			cmd.Stdout = a.Output()
			cmd.Stderr = a.Output()
			if err := cmd.Run(); err != nil {
				a.Fatalf("emulator tests: %v", err)
			}
		},
	})

	build.DefineTasks()
	boot.Main()
}
