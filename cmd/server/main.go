package main // Entry point package

import "github.com/iliyamo/recipe-api/internal/cli" // cobra command tree

func main() {
	cli.Execute() // serve, migrate, wait-for-db, create-superuser, consume-events
}
