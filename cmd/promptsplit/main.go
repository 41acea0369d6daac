// Command promptsplit decomposes a task prompt into subtasks with validated constraints.
package main

func main() {
	Execute()
}
