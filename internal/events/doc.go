// Package events provides the in-memory event bus connecting the pipeline
// orchestrator and job scheduler to notification transports.
//
// Publishing is always non-blocking: each subscriber owns a bounded buffered
// channel and slow consumers drop events rather than stalling the pipeline.
// The bus counts drops so operators can see when a subscriber falls behind.
package events
