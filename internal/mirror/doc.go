// Package mirror writes crawled pages to disk in a directory tree that mirrors
// the URL structure of the site.
//
// For a URL with host H and path segments P:
//
//	https://H/             -> <out>/H/H.md
//	https://H/a/b/c        -> <out>/H/a/b/c.md
//	https://H/a/b/c#frag   -> <out>/H/a/b/c_frag.md
//
// Characters that are not allowed in file names on common filesystems are
// replaced with an underscore.
package mirror
