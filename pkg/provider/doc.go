// Package provider defines the LLM provider interface and implementations
// for communicating with language model APIs (Anthropic, OpenAI, etc).
package provider
