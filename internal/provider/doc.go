// Package provider defines the generation provider contract and its HTTP
// client. The provider turns script text into narration audio, scene plans,
// character sheets, images, and video clips; Storyreel consumes those
// capabilities and never implements them itself.
package provider
