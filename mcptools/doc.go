// Package mcptools exposes the relay command set as Model Context Protocol
// tools, so MCP-speaking assistants can drive a connected design document
// without knowing anything about channels or correlation ids.
//
// Key features:
//   - One MCP tool per relay command, with typed inputs and outputs
//   - Tool schemas derived from Go structs, including parameter constraints
//   - Any Invoker works as the backend; bridge.CommandBridge satisfies it
//   - Stdio transport for local assistant integrations
//
// Basic usage:
//
//	client, err := canvaslink.NewClient("ws://localhost:3055", "design-main")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	server, err := mcptools.NewServer(client, "1.0.0")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := server.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package mcptools
