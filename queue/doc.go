// Package queue holds accepted messages until the drain loop delivers them.
//
// Items are served highest priority first and, among equal priorities, in
// arrival order. Each item owns the Completer half of a Future; the caller
// that submitted the message waits on the Future.
package queue
