package main

import "github.com/openpredict/crossarb/cmd"

func main() {
	cmd.Execute()
}
