// Package preview compiles a project into a single executable HTML document.
//
// The pipeline has three pure stages:
//   - Rewrite: strips the react, react-dom and ./App imports and turns the
//     component's default export into an assignment to window.App
//   - Resolve: maps package.json dependencies to unpkg script tags, in
//     declaration order, skipping react and react-dom
//   - Assemble: injects the runtime bundle, the stylesheet, the error overlay
//     and the app block before the shell's closing body tag
//
// Errors inside the document are reported through two overlay channels:
// window.onerror ("Runtime Error") and the app block's catch clause
// ("Compilation/Execution Error").
//
// Example Usage:
//
//	c := preview.NewCompiler("unpkg.com", logger)
//	doc := c.Compile(project.DefaultFiles())
package preview
