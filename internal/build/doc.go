// Package build runs a full build: it clears the destination tree and then runs
// every transform stage according to a fixed plan.
//
//	series(clean, parallel(markup, styles, scripts,
//	    parallel(fonts-woff, fonts-woff2, fonts-ttf),
//	    sequence(images, sprites)))
//
// Clean completes before any stage starts and a failed clean stops the build.
// Images complete before sprites start because both write beneath the images
// directory; sprites still run when images fail. All other stages are unordered.
package build
