// Package server exposes a stage over HTTP so that an editor, a script or
// `stagehand attach` can drive it remotely.
//
// # Endpoints
//
//   - POST /auth - password authentication, returns a bearer token
//   - GET/POST /sprites, DELETE /sprites/:id - list, add and remove sprites
//   - POST /sprites/:id/{select,hero,position} - selection, hero flag, drag
//   - POST /blocks, POST /blocks/reorder, PUT|DELETE /blocks/:index,
//     POST /blocks/:index/sub - edit the selected sprite's script
//   - POST /run, POST /reset - start and reset the stage
//   - GET /collisions - collision status
//   - GET /render.png - PNG of the stage
//   - GET /ws - websocket stream of stage events
//
// Operations the stage rejects answer 409 with {"ok":false}; malformed
// bodies and paths answer 400.
//
// # Authentication
//
// When a password hash is configured, clients POST their password to /auth
// and receive a token that must accompany every other request, either as
// "Authorization: Bearer <token>" or as a token query parameter (browsers
// cannot set headers on websocket upgrades). Without a hash the server is
// open.
package server
