// Command signcam serves a live hand-landmark view of a local camera.
package main

func main() {
	Execute()
}
