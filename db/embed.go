// Package db embeds the TechStore schema and seed catalog.
package db

import _ "embed"

// Schema contains the idempotent DDL for all application tables.
//
//go:embed migrations/001_schema.sql
var Schema string

// Products is the demo catalog loaded by the seed tool.
//
//go:embed seed/products.json
var Products []byte
