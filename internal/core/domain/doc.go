// Package domain holds recall's core types: notes and their chunks, search
// results and clusters, grounded context with citation ids, chat sessions
// and the stream events sent while answering, plus settings.
//
// It imports only the standard library; every other package may import it.
package domain
