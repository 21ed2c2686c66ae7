// Command layerstore is a thin CLI over the pkg/storage LayeredStorage
// facade, in the spirit of gocfl's cobra-based command tree.
package main

func main() {
	Execute()
}
