package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/Aliikhatami94/workbox/internal/cli"
	"github.com/Aliikhatami94/workbox/internal/store"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	path := os.Getenv("WORKBOX_DB")
	if path == "" {
		path = "workbox.db"
	}

	st, err := store.NewStore(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open store:", err)
		os.Exit(1)
	}
	defer st.Close()

	if err := cli.NewRootCmd(st).Execute(); err != nil {
		os.Exit(1)
	}
}
