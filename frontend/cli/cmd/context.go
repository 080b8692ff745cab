package cmd

import (
	"context"

	"github.com/spf13/afero"
)

type contextKey string

const (
	// ContextKeyFileSystem overrides the filesystem, used by tests.
	ContextKeyFileSystem contextKey = "filesystem"

	// ContextKeyDisableFileLogs keeps logs on stdout only.
	ContextKeyDisableFileLogs contextKey = "disable-file-logs"

	contextKeyGlobalOptions contextKey = "global-options"
)

func getFileSystem(ctx context.Context) *afero.Afero {
	if fs, ok := ctx.Value(ContextKeyFileSystem).(*afero.Afero); ok {
		return fs
	}
	return &afero.Afero{Fs: afero.NewOsFs()}
}

func setGlobalOptions(ctx context.Context, options *globalOptions) context.Context {
	return context.WithValue(ctx, contextKeyGlobalOptions, options)
}
