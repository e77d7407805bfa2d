// Package scanify simulates the look of a physically scanned paper document.
//
// A rendered page raster is pushed through a fixed chain of procedural stages
// (paper tone, geometric warp, lamp lighting, creases, paper grain, edge
// vignette, scanner bed compositing and sensor noise). Each stage is driven by a
// single intensity in [0, 1] and an explicit random source, so a render can be
// reproduced from a seed. Page rasterization and document assembly sit behind
// the PageSource and Assembler interfaces.
package scanify
