package template

const StyleCSS = `@charset "UTF-8";

html {
  writing-mode: vertical-rl;
  -webkit-writing-mode: vertical-rl;
  -epub-writing-mode: vertical-rl;
}

body {
  margin: 0;
  padding: 0;
  font-family: serif;
  line-height: 1.75;
  text-align: justify;
}

h1 {
  font-size: 1.5em;
  margin: 2em 1em;
  font-weight: bold;
}

h2 {
  font-size: 1.2em;
  margin: 0 0 0 2em;
  font-weight: bold;
}

h3.section {
  font-size: 1em;
  margin: 0 0 0 1em;
  color: #555555;
}

p {
  margin: 0;
  text-indent: 1em;
}

p.episode-number {
  text-indent: 0;
  font-size: 0.8em;
  color: #777777;
}

p.author {
  text-indent: 0;
  margin: 0 2em;
  text-align: right;
}

hr {
  border: none;
  border-right: 1px solid #aaaaaa;
  margin: 0 1.5em;
}

ol.toc {
  list-style: none;
  padding: 0;
}

.tcy {
  text-combine-upright: all;
  -webkit-text-combine: horizontal;
  -epub-text-combine: horizontal;
}

em.sesame {
  font-style: normal;
  text-emphasis-style: sesame;
  -webkit-text-emphasis-style: sesame;
  -epub-text-emphasis-style: sesame;
}

img {
  max-width: 100%;
  max-height: 100%;
  height: auto;
  display: block;
  margin: auto;
}
`
