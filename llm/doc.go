// Package llm defines the provider contract that unifies remote LLM chat
// APIs behind one normalized message model.
//
// Backends implement [Provider] and register themselves by name — similar
// to how database/sql works with driver packages. Import a backend package
// for side-effect registration, then construct a provider from config:
//
//	import (
//	    "github.com/kbukum/uniai/llm"
//	    _ "github.com/kbukum/uniai/llm/openai" // registers "openai"
//	)
//
//	provider, err := llm.New(llm.Config{
//	    Provider: "openai",
//	    APIKey:   os.Getenv("OPENAI_API_KEY"),
//	    Model:    "gpt-4o-mini",
//	})
//
//	resp, err := provider.Chat(ctx, []llm.Message{
//	    llm.UserMessage("Hello!"),
//	})
//
// Each backend owns the translation from the normalized [Message] sequence
// to its vendor request schema and the inverse translation of vendor
// responses and errors. Vendor failures surface as the typed errors in
// package errors, so callers handle faults uniformly regardless of which
// provider produced them.
package llm
