// Command meshroof runs the mesh relay control plane: the persisted node
// record, the local console shell and the arbitrated remote shell.
package main

import (
    "fmt"
    "os"
)

// Set at build time with -ldflags "-X main.version=... -X main.built=...".
var (
    version = "dev"
    built   = "unknown"
)

func main() {
    if err := newRootCmd().Execute(); err != nil {
        fmt.Fprintln(os.Stderr, "meshroof:", err)
        os.Exit(1)
    }
}
