package main

import "github.com/andresmejia3/facemesh/cmd"

func main() {
	cmd.Execute()
}
