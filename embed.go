package spacetraveling

import "embed"

// staticAssets holds the files served under /public/.
//
//go:embed static/*
var staticAssets embed.FS
