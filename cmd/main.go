// Package main provides the entry point for the geodiag CLI.
package main

func main() {
	Execute()
}
