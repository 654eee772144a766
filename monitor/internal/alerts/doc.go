// Package alerts turns poll cycles into firing and resolved alerts and
// delivers them to Slack, Teams or generic HTTP webhooks.
package alerts
