// Package paint batches per-frame dynamic instances into streaming buffers and issues one
// instanced draw per batch.
//
// Every painter follows the same frame protocol: BeginFrame once the previous frame's command
// buffer has completed, any number of Paint calls, and EndFrame. Instances are drawn in the order
// they were painted. A batch is drawn when the mapped buffer is full and another instance
// arrives, when draw-relevant state changes (the transform, or the model for SpecialPainter), on
// an explicit Flush, and at EndFrame.
package paint
