/*
Package server provides the HTTP interface to a running cardiowave simulation.  It also
manages the frame loop that steps the engine, the snapshot store and the cache of
rendered frames.

A server is configured with a TOML file (see LoadConfig) holding the tissue domain,
simulation and model settings, logging, snapshot storage, kafka activity logging and
authorization.  Mutating requests need a JWT when a secret key is configured.

Web clients poll /api/frame or open the /api/stream websocket to receive one RGBA frame
per frame tick.  See WebHelp for the full API.
*/
package server
