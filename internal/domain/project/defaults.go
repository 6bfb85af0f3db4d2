package project

import "sort"

const defaultShell = `<!DOCTYPE html>
<html lang="en">
  <head>
    <meta charset="UTF-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1.0" />
    <title>React App</title>
  </head>
  <body>
    <div id="root"></div>
  </body>
</html>`

const defaultEntry = `import React from 'react';
import ReactDOM from 'react-dom/client';
import App from './App';

const root = ReactDOM.createRoot(document.getElementById('root'));
root.render(
  <React.StrictMode>
    <App />
  </React.StrictMode>
);`

const defaultComponent = `import React, { useState } from 'react';

export default function App() {
  const [count, setCount] = useState(0);

  return (
    <div className="container">
      <div className="card">
        <div className="icon-wrapper">
          <i className="fa-brands fa-react"></i>
        </div>
        <h1>Runtime Ready</h1>
        <p>This editor now handles exports better!</p>

        <button
          onClick={() => setCount(c => c + 1)}
          className="btn"
        >
          Count is {count}
        </button>
      </div>
    </div>
  );
}`

const defaultStylesheet = `body {
  font-family: 'Inter', sans-serif;
  background-color: #f3f4f6;
  display: flex;
  justify-content: center;
  align-items: center;
  min-height: 100vh;
  margin: 0;
}

.container {
  text-align: center;
}

.card {
  background: white;
  padding: 2rem 3rem;
  border-radius: 1rem;
  box-shadow: 0 10px 25px -5px rgba(0, 0, 0, 0.1);
}

.icon-wrapper {
  font-size: 3rem;
  color: #61dafb;
  margin-bottom: 1rem;
  animation: spin 10s linear infinite;
}

h1 {
  color: #1f2937;
  margin-bottom: 0.5rem;
}

p {
  color: #6b7280;
  margin-bottom: 1.5rem;
}

.btn {
  background: #3b82f6;
  color: white;
  border: none;
  padding: 0.75rem 1.5rem;
  border-radius: 0.5rem;
  font-weight: 600;
  cursor: pointer;
}

.btn:hover {
  background: #2563eb;
}

@keyframes spin {
  from { transform: rotate(0deg); }
  to { transform: rotate(360deg); }
}`

const defaultDescriptor = `{
  "name": "react-project",
  "version": "1.0.0",
  "dependencies": {
    "react": "^18.2.0",
    "react-dom": "^18.2.0",
    "canvas-confetti": "^1.6.0"
  }
}`

// DefaultFiles returns a fresh copy of the starter project.
func DefaultFiles() Files {
	f := NewFiles()
	f.Set(ShellFile, defaultShell)
	f.Set(EntryFile, defaultEntry)
	f.Set(ComponentFile, defaultComponent)
	f.Set(StylesheetFile, defaultStylesheet)
	f.Set(DescriptorFile, defaultDescriptor)
	return f
}

// Normalize seeds any missing required entry from the starter project.
// Existing entries keep their content and position.
func Normalize(f Files) Files {
	out := f.Clone()
	defaults := DefaultFiles()
	for _, name := range RequiredFiles {
		if !out.Has(name) {
			out.Set(name, defaults.Content(name))
		}
	}
	return out
}

// FromLegacy rebuilds files for records saved before multi-file projects
// existed: only the component and stylesheet were stored.
func FromLegacy(jsx, css string) Files {
	f := DefaultFiles()
	if jsx != "" {
		f.Set(ComponentFile, jsx)
	}
	if css != "" {
		f.Set(StylesheetFile, css)
	}
	return f
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
