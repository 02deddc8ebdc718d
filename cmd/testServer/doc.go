/*
Package testServer is a small fasthttp server exposing fixed scenario
endpoints — /text, /json, /redirect, /chunked, /gzip, /echo, /slow —
for manual exercising of the client against real wire traffic rather
than mocks. No test in this repository starts it.

It is a test fixture, not a production server.
*/
package main
