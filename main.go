package main

import "github.com/fuskar/attendance/cmd"

func main() {
	cmd.Execute()
}
