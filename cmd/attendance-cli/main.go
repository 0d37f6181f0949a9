// Command attendance-cli is the terminal client of the attendance API.
package main

import "github.com/noah-isme/attendance-api/internal/cli"

func main() {
	cli.Execute()
}
