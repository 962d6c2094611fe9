package main

import "poimap-server/cmd"

func main() {
	cmd.Execute()
}
