package main

import "github.com/jokizilla/jokizilla/internal/cli"

func main() {
	cli.Execute()
}
