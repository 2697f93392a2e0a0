// Command maildispatch runs the email dispatch service and a small client
// for submitting messages to it.
package main

func main() {
	Execute()
}
