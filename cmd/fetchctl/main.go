package main

import "github.com/assetnote/fetchgo/cmd/fetchctl/cmd"

func main() {
	cmd.Execute()
}
