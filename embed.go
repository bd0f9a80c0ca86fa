package spacetravel

import "embed"

// EmbeddedAssets contains the stylesheet and images served under /public/
// and copied into the output directory by BuildSite.
//
//go:embed embedded/*
var EmbeddedAssets embed.FS
