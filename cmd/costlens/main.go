// Costlens - Cloud Cost Attribution Engine
// Query. Attribute. Correlate.
package main

func main() {
	Execute()
}
