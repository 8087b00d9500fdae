/*
Package sciencegpt is a science tutoring backend for school students.

Questions are answered by an LLM gateway that routes each request to Groq, OpenAI or Anthropic
depending on its type, falls back to the next provider when one fails and caches the responses.

	apps/api    the HTTP API (echo)
	apps/admin  the administration CLI
	core        the domain: users, tutoring sessions, the LLM gateway and the response cache
	services    provider clients, email, logging and metrics
	storage     the SQL repositories and the cache stores
*/
package sciencegpt
