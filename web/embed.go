package web

import "embed"

// StaticFS embeds the single page UI (index.html, script and stylesheet).
//
//go:embed static/*
var StaticFS embed.FS
