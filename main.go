package main

import "hpackcodec/cmd"

func main() {
	cmd.Execute()
}
