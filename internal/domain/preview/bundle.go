package preview

// Runtime bundle URLs, in load order.
const (
	TailwindURL    = "https://cdn.tailwindcss.com"
	FontAwesomeURL = "https://cdnjs.cloudflare.com/ajax/libs/font-awesome/6.4.0/css/all.min.css"
	ReactURL       = "https://unpkg.com/react@18/umd/react.development.js"
	ReactDOMURL    = "https://unpkg.com/react-dom@18/umd/react-dom.development.js"
	BabelURL       = "https://unpkg.com/@babel/standalone/babel.min.js"
)

// Overlay labels written by the two error channels.
const (
	RuntimeErrorLabel     = "Runtime Error"
	CompilationErrorLabel = "Compilation/Execution Error"
	ErrorDisplayID        = "error-display"
)

// HookNames are bound from the React global inside the app block.
var HookNames = []string{
	"useState", "useEffect", "useMemo", "useCallback",
	"useRef", "useReducer", "useContext", "createContext",
}

const coreLibraries = `
    <!-- Core Libraries -->
    <script src="` + TailwindURL + `"></script>
    <link rel="stylesheet" href="` + FontAwesomeURL + `">
    <script src="` + ReactURL + `" crossorigin></script>
    <script src="` + ReactDOMURL + `" crossorigin></script>
    <script src="` + BabelURL + `"></script>

    <!-- User Dependencies -->
    `

const styleOpen = `

    <style>
      `

const overlayStyle = `
      #error-display {
        display: none;
        position: fixed;
        top: 0; left: 0; right: 0; bottom: 0;
        background: rgba(255, 255, 255, 0.95);
        color: #ef4444;
        padding: 2rem;
        z-index: 9999;
        font-family: monospace;
        white-space: pre-wrap;
        overflow: auto;
      }
    </style>

    <div id="error-display"></div>
`

// errorHarness installs the global uncaught-exception channel. The
// console.error wrapper is a pass-through hook.
const errorHarness = `    <script>
      window.onerror = function(message, source, lineno, colno, error) {
        const el = document.getElementById('error-display');
        el.style.display = 'block';
        let msg = message;
        if (error && error.message) msg = error.message;
        el.innerHTML = '<strong>` + RuntimeErrorLabel + `:</strong><br/>' + msg + '<br/><br/><small>' + (source || 'Inline Script') + ':' + lineno + (colno ? ':' + colno : '') + '</small>';
      };

      const originalConsoleError = console.error;
      console.error = function(...args) {
        originalConsoleError.apply(console, args);
      };
    </script>
`

const appBlockOpen = `
    <!-- App Execution -->
    <script type="text/babel" data-presets="env,react">
      var exports = {};
      var module = { exports: exports };

      const { useState, useEffect, useMemo, useCallback, useRef, useReducer, useContext, createContext } = React;

      try {
        // App.jsx
`

const exportFallbacks = `

        if (!window.App && module.exports.default) window.App = module.exports.default;
        if (!window.App && module.exports && typeof module.exports === 'function') window.App = module.exports;

        // index.jsx
`

const appBlockClose = `

      } catch (err) {
        const el = document.getElementById('error-display');
        el.style.display = 'block';
        el.innerText = '` + CompilationErrorLabel + `:\n' + err.message + '\n' + (err.stack || '');
      }
    </script>
    `
