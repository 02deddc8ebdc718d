/*
Package cmd implements fetchctl, a small command-line client built on
top of pkg/http: get/post one request at a time, or drive pool-stats
to watch per-origin connection reuse under concurrent load.
*/
package cmd
