// Package uniai is a unification layer over remote LLM chat APIs. One
// client type speaks to OpenAI, DeepSeek, Gemini, Claude, or anything
// registered as a provider, with conversation memory, bounded history,
// retries, and a shared error taxonomy handled in one place.
//
// Basic usage:
//
//	import (
//		"github.com/kbukum/uniai"
//		"github.com/kbukum/uniai/llm"
//
//		_ "github.com/kbukum/uniai/llm/openai"
//	)
//
//	client, err := uniai.New(llm.Config{
//		Provider:     "openai",
//		APIKey:       os.Getenv("OPENAI_API_KEY"),
//		Model:        "gpt-4o-mini",
//		SystemPrompt: "You are a helpful assistant.",
//		MaxHistory:   20,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	reply, err := client.Chat(ctx, "What is the capital of France?")
//
// Streaming delivers the reply incrementally:
//
//	err := client.Stream(ctx, "Tell me a story.", func(fragment string) error {
//		fmt.Print(fragment)
//		return nil
//	})
//
// Switching providers keeps the conversation by default:
//
//	err := client.SwitchProvider("deepseek", os.Getenv("DEEPSEEK_API_KEY"), "deepseek-chat")
//
// Backends register themselves on import, so blank-import every provider
// package your program should be able to use.
package uniai
