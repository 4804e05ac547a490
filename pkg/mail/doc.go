// Package mail delivers a batch of personalised messages over a single SMTP
// session using gomail, reporting a result for every recipient.
package mail
