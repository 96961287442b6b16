// Package project defines the domain entities the pipeline operates on:
// projects, their scenes, and extracted characters. Persistence lives in the
// store package; these types carry no storage concerns.
package project
