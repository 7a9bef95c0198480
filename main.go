package main

import "geph5/cmd/run"

func main() {
	run.Execute()
}
