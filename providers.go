package main

import (
	// Import all provider modules to trigger their init() functions
	_ "github.com/searchmux/searchmux/pkg/providers/brave"
	_ "github.com/searchmux/searchmux/pkg/providers/duckduckgo"
	_ "github.com/searchmux/searchmux/pkg/providers/pubmed"
)
