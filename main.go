package main

import "github.com/kozaktomas/immich-metasync/cmd"

func main() {
	cmd.Execute()
}
