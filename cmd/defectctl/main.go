// Package main provides the entry point for the defectctl CLI.
package main

func main() {
	Execute()
}
