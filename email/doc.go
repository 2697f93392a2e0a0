// Package email defines the message and delivery result types shared by the
// dispatch pipeline.
//
// A Message carries the addressed fields plus any free-form fields a caller
// sends; the free-form fields survive a JSON round trip and take part in the
// message fingerprint.
package email
